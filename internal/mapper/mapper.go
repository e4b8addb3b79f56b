// Package mapper reduces dense heatmap collections before they are handed
// to the renderer.
package mapper

import "github.com/paulmach/orb/geojson"

type Aggregator interface {
	// Aggregate folds fc into one weighted point per cell. weightProp names
	// the property that carries each feature's weight; empty counts features.
	Aggregate(fc *geojson.FeatureCollection, weightProp string) (*geojson.FeatureCollection, error)
}
