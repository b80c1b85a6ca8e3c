// Package session owns the automation sessions used by test workers.
//
// A Registry hands out exactly one Handle per worker. Workers are identified
// by a WorkerID carried on the context (see WithWorker), so two goroutines
// running different tests can never observe each other's browser or device.
//
// Sessions are provisioned through a Provisioner, which by default opens a
// W3C WebDriver session against Selenium Grid or an Appium server using the
// capability set for the profile's platform.
package session
