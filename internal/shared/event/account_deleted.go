package event

const AccountDeletedDestination string = "account_deleted"
const AccountDeletedConsumerOTP string = "account_deleted_otp"

// AccountDeletedMessage is published by the account owner service. Subject is
// the same identifier the codes were issued for.
type AccountDeletedMessage struct {
	Subject string `json:"subject"`
}
