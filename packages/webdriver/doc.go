// Package webdriver is a small W3C WebDriver client used to drive browser
// sessions (Selenium Grid, chromedriver, geckodriver, msedgedriver) and
// mobile sessions (Appium) from bankspec.
//
// Wire errors are decoded into *Error values that match the package
// sentinels with errors.Is, so callers can treat "no such element" or
// "stale element reference" as transient without string inspection.
package webdriver
