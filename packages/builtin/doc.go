// Package builtin provides the data generators scenario steps can call to
// fill banking forms with fresh values.
//
// Available functions:
//   - uuid(), ulid(): unique identifiers
//   - now(), date(layout), timestamp(): the current time
//   - random(min, max): integer in range
//   - randomString(n), randomDigits(n), randomEmail(): filler text
//   - amount(min, max): a currency amount with two decimals
//
// Functions are invoked as {{name(args)}} inside step values.
package builtin
