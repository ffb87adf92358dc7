// Package mail sends plain and HTML email through a provider-agnostic Mail interface.
package mail
