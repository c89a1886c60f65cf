// Package model contains the linear model that participants train and the
// coordinator aggregates: its parameters, forward pass, wire encoding and
// the sample-weighted federated average.
package model
