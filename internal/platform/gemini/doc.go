// Package gemini implements the extraction.Extractor interface using
// Google's Gemini API to read structured fields from form images.
package gemini
