package service

// SetPageCounter replaces the PDF page counter so tests can ingest fake files.
func SetPageCounter(s IngestService, fn func(path string) (int, error)) {
	s.(*ingestService).pageCount = fn
}
