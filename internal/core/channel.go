package core

const (
	ChannelOnsite Channel = iota
	ChannelDelivery
	ChannelPickup
)

// Service type tags reported by the POS for non on-site orders.
const (
	ServiceTypeDelivery = "Доставка"
	ServiceTypePickup   = "Самовывоз"
)

// Channel is the fulfillment method of an order.
type Channel int

// ChannelOf maps a raw service type to its channel. Only exact matches of the
// two known tags select delivery or pickup; anything else is on-site.
func ChannelOf(serviceType string) Channel {
	switch serviceType {
	case ServiceTypeDelivery:
		return ChannelDelivery
	case ServiceTypePickup:
		return ChannelPickup
	default:
		return ChannelOnsite
	}
}

func (c Channel) String() string {
	switch c {
	case ChannelDelivery:
		return "delivery"
	case ChannelPickup:
		return "pickup"
	default:
		return "cafe"
	}
}
