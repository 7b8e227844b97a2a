package models

import (
	"path/filepath"
	"strings"
	"time"
)

var overviewExts = map[string]bool{
	".pdf":  true,
	".docx": true,
	".txt":  true,
}

// IsSupportedOverview reports whether name has a pdf, docx or txt extension.
func IsSupportedOverview(name string) bool {
	return overviewExts[strings.ToLower(filepath.Ext(name))]
}

// SalesInput is one submission of the sales insight form. It is consumed by
// the prompt formatter and never stored as-is.
type SalesInput struct {
	ProductName      string `json:"product_name" form:"product_name"`
	CompanyURL       string `json:"company_url" form:"company_url"`
	ProductCategory  string `json:"product_category" form:"product_category"`
	Competitors      string `json:"competitors" form:"competitors"`
	ValueProposition string `json:"value_proposition" form:"value_proposition"`
	TargetCustomer   string `json:"target_customer" form:"target_customer"`

	// UploadedFileName is empty when no product overview was attached.
	UploadedFileName string `json:"uploaded_file_name,omitempty" form:"-"`
}

type Insight struct {
	ProductName      string    `json:"product_name"`
	CompanyURL       string    `json:"company_url"`
	Category         string    `json:"category"`
	ValueProposition string    `json:"value_proposition"`
	Text             string    `json:"insight"`
	CreatedAt        time.Time `json:"created_at"`
}

// IndexedInsight pairs an insight with its 1-based display position.
type IndexedInsight struct {
	Index int `json:"index"`
	Insight
}
