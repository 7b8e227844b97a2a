package services

import (
	"strings"

	"salesassistant/models"
)

const uploadedFileNote = "Additional Information: Parsed content from the uploaded file."

// FormatInsightPrompt expands a sales form submission into the single-shot
// prompt. The uploaded file is only acknowledged, never read.
func FormatInsightPrompt(in models.SalesInput) string {
	var b strings.Builder

	b.WriteString("Provide sales insights for the following:\n")
	b.WriteString("Product: " + in.ProductName + "\n")
	b.WriteString("Company: " + in.CompanyURL + "\n")
	b.WriteString("Category: " + in.ProductCategory + "\n")
	b.WriteString("Competitors: " + in.Competitors + "\n")
	b.WriteString("Value Proposition: " + in.ValueProposition + "\n")
	b.WriteString("Target Customer: " + in.TargetCustomer + "\n")

	if in.UploadedFileName != "" {
		b.WriteString(uploadedFileNote + "\n")
	}

	return b.String()
}
