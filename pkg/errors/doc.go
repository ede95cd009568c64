// Package errors provides the closed set of typed domain errors raised by
// the admin services, plus the translator that maps upstream HTTP failure
// codes onto it at entity-creation call sites.
//
// Services raise these instead of raw transport errors:
//
//	user, err := userService.GetUser(ctx, "jdoe")
//	if errors.IsCode(err, errors.ErrCodeUserNotFound) {
//		// zero or ambiguous matches upstream
//	}
//
// The HTTP facade maps an *Error to a response status with HTTPStatusCode.
package errors
