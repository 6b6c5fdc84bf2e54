package driven

// TaskQueue schedules background ingestion work. Submit is
// fire-and-forget: the upload call returns before processing begins.
type TaskQueue interface {
	// Submit queues processing of a document's content.
	Submit(documentID string, content []byte)

	// Wait blocks until all submitted tasks have finished.
	Wait()
}
