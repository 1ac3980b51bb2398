//go:build !profile

package profiler

import "errors"

// No-op versions when the "profile" build tag is not set.

const Enabled = false

func Init(capacity int) {}

func Start(name string) func() { return func() {} }

func Scopes() []Scope { return nil }

func WriteSpeedscope(path string) error { return errors.New("profiler: built without the profile tag") }
