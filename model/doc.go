// Package model contains the shared in-memory representation of the
// simulation: tasks, worker specifications and states, the message envelope
// vocabulary and the auction, rescue and trade records exchanged through it.
package model
