// Package ocr defines the abstraction layer for plugging OCR engines into the
// redaction pipeline. The interfaces are small and transport-agnostic so
// engines can be backed by native libraries (the default is Tesseract via the
// tesseract subpackage), local binaries, or remote services without leaking
// provider-specific concerns into callers.
package ocr
