package ingest

import "errors"

// ErrAlreadyRunning is returned when Run is called while a previous run is
// still in flight. The pipeline allows only one run at a time.
var ErrAlreadyRunning = errors.New("ingestion already running")
