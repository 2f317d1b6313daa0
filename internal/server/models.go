package server

// solveRequest is the POST /solve body.
type solveRequest struct {
	Email  string `json:"email"`
	Secret string `json:"secret"`
	URL    string `json:"url"`
}

type solveResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	RunID   string `json:"run_id"`
}

type healthResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

type validationResponse struct {
	Detail string   `json:"detail"`
	Errors []string `json:"errors"`
}
