// Package ctl implements authhubctl, the operator CLI: signing key
// generation, password hashing and pushing endpoint manifests to a hub.
package ctl
