// Package scenario loads UI test scenarios from YAML files.
//
// A file holds shared variables, tags and a default platform, plus a list
// of scenarios. Each scenario is a sequence of structured steps:
//
//	name: Login
//	platform: web
//	scenarios:
//	  - name: Login_Valid
//	    tags: [smoke]
//	    steps:
//	      - open: "{{baseUrl}}/login"
//	      - type: {target: "#username", value: "{{$BANK_USER}}"}
//	      - click: "#login"
//	      - waitURL: /dashboard
//	      - assertText: {target: "#balance", op: ">=", value: "0"}
//	    after:
//	      - "-./scripts/reset-account.sh {{$BANK_USER}}"
//
// Targets are CSS selectors unless prefixed with xpath=, id=, link=,
// partial=, accessibility= or css=. Assert steps take an optional op (see
// package assertions); assertTitle defaults to equals, assertText and
// assertURL to contains.
package scenario
