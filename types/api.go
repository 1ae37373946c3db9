package types

// DownloadRequest is the body of POST /video/request-download
type DownloadRequest struct {
	URL string `json:"url"`
}

// DownloadResponse is returned when a job has been accepted
type DownloadResponse struct {
	VideoID string    `json:"video_id"`
	Status  JobStatus `json:"status"`
	Message string    `json:"message"`
}

// StatusResponse describes a job to a polling client
type StatusResponse struct {
	Status  JobStatus `json:"status"`
	VideoID string    `json:"video_id,omitempty"`
	Title   string    `json:"title,omitempty"`
	Error   string    `json:"error,omitempty"`
}
