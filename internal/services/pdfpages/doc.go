// Package pdfpages rasterises a paginated script document into one PNG per
// page with poppler's pdftoppm and applies an optional quarter-turn rotation
// so vertical script tables read upright for the extractor.
package pdfpages
