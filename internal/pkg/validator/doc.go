// Package validator checks tagged structs before they reach business logic.
//
// Usecases depend on the Validator interface. V10Validator backs it with
// go-playground/validator and English messages keyed by snake_case field names.
package validator
