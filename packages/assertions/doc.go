// Package assertions compares text read from the application under test
// against an expected value.
//
// Operators:
//   - equals, notEquals
//   - contains, notContains, startsWith, endsWith
//   - matches (regular expression, optionally wrapped in slashes)
//   - >, >=, <, <= on the first number found in the text, so
//     "Balance: 1,024.00 USD" compares as 1024
//   - empty, notEmpty
package assertions
