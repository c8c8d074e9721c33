// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Collection is a reference-manager collection.
type Collection struct {
	Key    string `json:"key" yaml:"key"`
	Name   string `json:"name" yaml:"name"`
	Parent string `json:"parent,omitempty" yaml:"parent,omitempty"`
}
