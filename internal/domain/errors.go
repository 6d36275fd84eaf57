package domain

import "errors"

var (
	// ErrQuestionNotFound indicates a submitted question ID is not in the catalog.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrInvalidAnswer is returned for answer values outside 1..5.
	ErrInvalidAnswer = errors.New("answer value must be between 1 and 5")
	// ErrNoAnswers is returned when a level is requested for an empty answer set.
	ErrNoAnswers = errors.New("no answers to score")
	// ErrIncompleteQuiz is returned when a result is submitted before every question is answered.
	ErrIncompleteQuiz = errors.New("quiz is not complete")
	// ErrProgressNotFound indicates the user has no saved quiz progress.
	ErrProgressNotFound = errors.New("quiz progress not found")

	// ErrResultNotFound indicates the quiz result does not exist.
	ErrResultNotFound = errors.New("quiz result not found")
	// ErrForbidden is returned when the caller may not access a resource.
	ErrForbidden = errors.New("access denied")
	// ErrUnauthenticated is returned when an operation needs a signed-in user.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrNotPurchased is returned when a detailed report is requested for an unpaid result.
	ErrNotPurchased = errors.New("result has not been purchased")

	// ErrTokenNotFound indicates the guest access token is unknown.
	ErrTokenNotFound = errors.New("access token not found")
	// ErrTokenExpired indicates the guest access token is past its expiry.
	ErrTokenExpired = errors.New("access token expired")

	// ErrUnknownProduct indicates the requested product is not configured.
	ErrUnknownProduct = errors.New("unknown product")
	// ErrEmailRequired is returned when a guest purchase has no email.
	ErrEmailRequired = errors.New("email is required for guest purchases")
	// ErrInvalidEmail is returned for malformed email addresses.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrAlreadyPurchased is returned when a result's report has already been bought.
	ErrAlreadyPurchased = errors.New("result already purchased")
	// ErrPurchaseNotFound indicates no tracking row matches the checkout session.
	ErrPurchaseNotFound = errors.New("purchase not found")
	// ErrPaymentNotConfirmed is returned when the payment provider has not confirmed payment.
	ErrPaymentNotConfirmed = errors.New("payment not confirmed")
	// ErrCheckoutUnavailable wraps payment provider failures during initiation.
	ErrCheckoutUnavailable = errors.New("checkout unavailable")

	// ErrCouponNotFound indicates the coupon code is unknown.
	ErrCouponNotFound = errors.New("coupon not found")
	// ErrCouponInactive indicates the coupon has been disabled.
	ErrCouponInactive = errors.New("coupon is inactive")
	// ErrCouponExpired indicates the coupon is past its expiry.
	ErrCouponExpired = errors.New("coupon expired")
	// ErrCouponExhausted indicates the coupon reached its usage cap.
	ErrCouponExhausted = errors.New("coupon usage limit reached")
	// ErrInvalidCoupon is returned for malformed coupon definitions.
	ErrInvalidCoupon = errors.New("invalid coupon")

	// ErrAffiliateNotFound indicates the affiliate code is unknown or inactive.
	ErrAffiliateNotFound = errors.New("affiliate not found")
	// ErrInvalidAffiliate is returned for malformed affiliate definitions.
	ErrInvalidAffiliate = errors.New("invalid affiliate")
	// ErrDuplicateCode is returned when a coupon or affiliate code is already taken.
	ErrDuplicateCode = errors.New("code already exists")
)
