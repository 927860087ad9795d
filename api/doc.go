// Package api defines the request and response types of the rotation
// service's HTTP interface.
//
// The wire types never carry raw key material. Ring slots appear as key
// fingerprints only; the single exception is RotateRequest.Candidate,
// which travels client-to-server and is never echoed back.
package api
