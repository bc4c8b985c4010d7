// hsds-validate checks Open Referral HSDS tables from the command line.
//
// Usage:
//
//	# Validate a local CSV with a header on row 1
//	hsds-validate validate service services.csv
//
//	# Validate a remote feed and let the tool find the header
//	hsds-validate validate organization https://example.org/organizations.csv --headers-row auto
//
//	# List resource types, or print one schema
//	hsds-validate types
//	hsds-validate schema service
//
// Exit status is 0 for valid input, 1 for invalid input and 2 for errors.
package main

func main() {
	Execute()
}
