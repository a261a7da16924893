package enums

import "fmt"

// NotificationType categorizes in-app notifications.
type NotificationType string

const (
	NotificationTypeBidPlaced      NotificationType = "bid_placed"
	NotificationTypeBidAccepted    NotificationType = "bid_accepted"
	NotificationTypeOutbid         NotificationType = "outbid"
	NotificationTypeAuctionWon     NotificationType = "auction_won"
	NotificationTypeAuctionStatus  NotificationType = "auction_status"
	NotificationTypePaymentPending NotificationType = "payment_pending"
	NotificationTypePaymentResult  NotificationType = "payment_result"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeBidPlaced,
	NotificationTypeBidAccepted,
	NotificationTypeOutbid,
	NotificationTypeAuctionWon,
	NotificationTypeAuctionStatus,
	NotificationTypePaymentPending,
	NotificationTypePaymentResult,
}

// String implements fmt.Stringer.
func (n NotificationType) String() string {
	return string(n)
}

// IsValid reports whether the value is a known NotificationType.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw input into a NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
