package tube

// Websocket frames exchanged between a Client and the Hub. The hub stamps
// From on every relayed message; clients are never trusted to set it.
type frameKind string

const (
	frameHello   frameKind = "hello"
	frameWelcome frameKind = "welcome"
	frameRoster  frameKind = "roster"
	frameOffers  frameKind = "offers"
	frameOffer   frameKind = "offer"
	frameMessage frameKind = "msg"
)

type frame struct {
	Kind      frameKind     `json:"kind"`
	Nick      string        `json:"nick,omitempty"`
	Self      ParticipantID `json:"self,omitempty"`
	Initiator ParticipantID `json:"initiator,omitempty"`
	Roster    []Participant `json:"roster,omitempty"`
	Offers    []Offer       `json:"offers,omitempty"`
	Offer     *Offer        `json:"offer,omitempty"`
	Msg       *Message      `json:"msg,omitempty"`
}
