package model

import "errors"

var (
	ConfigInvalidErr    = errors.New("invalid config")
	ModelNotReadyErr    = errors.New("model not ready")
	EmptyStoreErr       = errors.New("empty cluster store")
	NotFoundErr         = errors.New("not found")
	InvalidFeedbackErr  = errors.New("invalid feedback")
	ClusteringFailedErr = errors.New("clustering failed")
	PersistenceErr      = errors.New("persistence error")
	DimensionErr        = errors.New("dimension mismatch")
	NonFiniteErr        = errors.New("non-finite value")
)
