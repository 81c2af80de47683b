// Package events defines the messages published on the simulation event bus.
package events
