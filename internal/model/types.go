package model

// PredictRequest is the body of POST /predict. Image holds a data-URL or
// raw base64 encoded raster from the drawing canvas.
type PredictRequest struct {
	Image string `json:"image"`
}

// LayerActivations is one entry of the activation trace: a layer name and
// at most MaxActivationSamples sampled output values.
type LayerActivations struct {
	Layer       string    `json:"layer"`
	Activations []float32 `json:"activations"`
}

// PredictResponse is the success body of POST /predict. Probabilities is
// keyed by the stringified class index, "0" through "9".
type PredictResponse struct {
	Digit              int                `json:"digit"`
	Confidence         float32            `json:"confidence"`
	Probabilities      map[string]float32 `json:"probabilities"`
	NetworkActivations []LayerActivations `json:"network_activations"`
}

// ErrorResponse is the failure body for every endpoint.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}
