// Package oracle talks to the defect analysis service and provides the
// conservative fallback verdict used when that service is unavailable.
package oracle
