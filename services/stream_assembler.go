package services

import (
	"errors"
	"io"
	"iter"
	"strings"
)

// Progress yields the cumulative text after every fragment, empty fragments
// included. Chunk boundaries carry no meaning; fragments are concatenated in
// the order the provider emitted them.
//
// On a stream fault the partial text and the error are yielded once and the
// sequence ends. The stream is closed when the sequence finishes or the
// consumer stops pulling.
func Progress(stream FragmentStream) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		defer stream.Close()

		var b strings.Builder
		for {
			frag, err := stream.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(b.String(), newCompletionError("stream", err))
				return
			}
			b.WriteString(frag.Delta)
			if !yield(b.String(), nil) {
				return
			}
		}
	}
}

// Assemble folds the stream into its final text, calling onProgress with the
// cumulative value after each fragment. An empty stream yields "".
// When the stream faults, the text received so far is returned with the error.
func Assemble(stream FragmentStream, onProgress func(partial string)) (string, error) {
	var final string
	for partial, err := range Progress(stream) {
		if err != nil {
			return partial, err
		}
		final = partial
		if onProgress != nil {
			onProgress(partial)
		}
	}
	return final, nil
}
