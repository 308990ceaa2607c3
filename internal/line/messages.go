package line

import "fmt"

const (
	botSenderName = "BOT"
	botIconURL    = "https://cdn-icons-png.flaticon.com/512/6349/6349320.png"

	greetingIconURL = "https://cdn-icons-png.flaticon.com/512/2339/2339864.png"
	handoffIconURL  = "https://cdn-icons-png.flaticon.com/512/9136/9136041.png"
)

// Message is an outbound message payload.
type Message struct {
	Type       string      `json:"type"`
	Text       string      `json:"text,omitempty"`
	Sender     *Sender     `json:"sender,omitempty"`
	QuickReply *QuickReply `json:"quickReply,omitempty"`
}

// Sender overrides the display name and icon shown for a message.
type Sender struct {
	Name    string `json:"name,omitempty"`
	IconURL string `json:"iconUrl,omitempty"`
}

// QuickReply attaches tappable shortcut items to a message.
type QuickReply struct {
	Items []QuickReplyItem `json:"items"`
}

// QuickReplyItem is one shortcut button.
type QuickReplyItem struct {
	Type     string `json:"type"`
	ImageURL string `json:"imageUrl,omitempty"`
	Action   Action `json:"action"`
}

// Action is the action fired when a quick-reply item is tapped.
type Action struct {
	Type  string `json:"type"`
	Label string `json:"label"`
	Text  string `json:"text"`
}

// MenuQuickReply is the standard two-item menu: a greeting and the
// contact-agent phrase that triggers the hand-off.
func MenuQuickReply(handoffPhrase string) *QuickReply {
	return &QuickReply{
		Items: []QuickReplyItem{
			{
				Type:     "action",
				ImageURL: greetingIconURL,
				Action:   Action{Type: "message", Label: "สวัสดี", Text: "สวัสดี"},
			},
			{
				Type:     "action",
				ImageURL: handoffIconURL,
				Action:   Action{Type: "message", Label: handoffPhrase, Text: handoffPhrase},
			},
		},
	}
}

// WelcomeMessage greets a user who just added the account, with the menu.
func WelcomeMessage(displayName, handoffPhrase string) Message {
	return Message{
		Type: MessageTypeText,
		Text: fmt.Sprintf("ยินดีต้อนรับคุณ %s มีอะไรให้ฉันรับใช้", displayName),
		Sender: &Sender{
			Name:    botSenderName,
			IconURL: botIconURL,
		},
		QuickReply: MenuQuickReply(handoffPhrase),
	}
}

// HandoffConfirmation tells the user their conversation is being handed to
// a human agent and what to prepare.
func HandoffConfirmation() Message {
	return Message{
		Type: MessageTypeText,
		Text: "ระบบกำลังส่งบทสนทนาของท่านให้เจ้าหน้าที่ เจ้าหน้าที่จะทำการตอบกลับโดยเร็วที่สุด\n" +
			"เพื่อความรวดเร็วในการให้บริการกรุณาระบุข้อมูลดังนี้ค่ะ :\n" +
			"- เรื่องที่ต้องการติดต่อ\n" +
			"- หมายเลขคำสั่งซื้อ\n" +
			"- ชื่อ เบอร์โทรศัพท์ และ Email ที่ลงทะเบียนไว้กับ xxxx ค่ะ",
	}
}

// ClosingMessage thanks the user when a conversation returns to bot
// handling, with the menu re-attached.
func ClosingMessage(handoffPhrase string) Message {
	return Message{
		Type: MessageTypeText,
		Text: "ขอบคุณ ที่ให้เจ้าหน้าที่ช่วยเหลือนะคะ",
		Sender: &Sender{
			Name:    botSenderName,
			IconURL: botIconURL,
		},
		QuickReply: MenuQuickReply(handoffPhrase),
	}
}
