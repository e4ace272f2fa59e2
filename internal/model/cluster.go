package model

// Cluster is a group of embeddings sharing a label distribution.
// The centroid is fixed at creation, only the weights adapt.
type Cluster struct {
	ID         int              `json:"id"`
	Generation string           `json:"generation"`
	Centroid   Embedding        `json:"centroid"`
	Weights    Weights          `json:"weights"`
	Size       int              `json:"size"`
	Params     ClusteringConfig `json:"params"`
}

// Copy returns a deep copy of the cluster.
func (c Cluster) Copy() Cluster {
	c.Centroid = c.Centroid.Copy()
	return c
}
