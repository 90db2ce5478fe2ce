package govern

import "tgrate/internal/infra/telegram/chatlimit"

// Payload — контракт, которому должен отвечать каждый throttled-запрос Bot
// API: откуда взять ChatKey для допуска у Governor и какой метод вызывать.
// Сами поля тела запроса сериализуются через encoding/json по тегам структуры.
//
// Один интерфейс плюс дженерик Send покрывают все 17 методов разом, вместо
// отдельного клиентского метода на каждый из них.
type Payload interface {
	ChatKey() chatlimit.ChatKey
	Method() string
}

// chatTarget — общее поле chat_id, которое несёт почти каждый метод из
// списка ниже; ключ допуска строится из числового chat_id через
// chatlimit.ChatID. Для отправки по @username используйте ChatTargetUsername
// вместо chatTarget — она строит ключ через chatlimit.ChatUsername, но несёт
// то же поле chat_id в теле запроса, как того требует Bot API, принимающий
// "@username" в качестве chat_id.
type chatTarget struct {
	ChatID int64 `json:"chat_id"`
}

func (c chatTarget) ChatKey() chatlimit.ChatKey { return chatlimit.ChatID(c.ChatID) }

// ChatTargetUsername — встраивается вместо chatTarget в любой из методов
// ниже, когда адресат указывается по @username, а не по числовому chat_id.
// Даёт доступ к хеш-варианту ChatKey (chatlimit.ChatUsername) через тот же
// интерфейс Payload, которым пользуются методы с числовым chat_id.
type ChatTargetUsername struct {
	Username string `json:"chat_id"`
}

func (c ChatTargetUsername) ChatKey() chatlimit.ChatKey { return chatlimit.ChatUsername(c.Username) }

// SendMessage — текстовое сообщение, самый частый из throttled-методов.
type SendMessage struct {
	chatTarget
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview,omitempty"`
	ReplyToMessageID      int    `json:"reply_to_message_id,omitempty"`
}

func (SendMessage) Method() string { return "sendMessage" }

// SendMessageToUsername — то же самое сообщение, но адресованное по
// @username канала/супергруппы вместо числового chat_id. Допуск у Governor
// считается по хешу username (chatlimit.ChatUsername), отдельно от
// соответствующего числового chat_id того же чата (см. ChatKey).
type SendMessageToUsername struct {
	ChatTargetUsername
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview,omitempty"`
	ReplyToMessageID      int    `json:"reply_to_message_id,omitempty"`
}

func (SendMessageToUsername) Method() string { return "sendMessage" }

// ForwardMessage пересылает существующее сообщение из одного чата в другой.
// ChatKey строится по чату-получателю (ToChatID): лимиты считаются со стороны
// того, кому уходит трафик, как и для остальных методов отправки.
type ForwardMessage struct {
	ToChatID   int64 `json:"chat_id"`
	FromChatID int64 `json:"from_chat_id"`
	MessageID  int   `json:"message_id"`
}

func (f ForwardMessage) ChatKey() chatlimit.ChatKey { return chatlimit.ChatID(f.ToChatID) }
func (ForwardMessage) Method() string               { return "forwardMessage" }

// SendPhoto отправляет фото по file_id/URL (загрузка multipart не входит в
// объём этого клиента — методы оперируют уже существующими file_id).
type SendPhoto struct {
	chatTarget
	Photo   string `json:"photo"`
	Caption string `json:"caption,omitempty"`
}

func (SendPhoto) Method() string { return "sendPhoto" }

// SendAudio отправляет аудиофайл.
type SendAudio struct {
	chatTarget
	Audio   string `json:"audio"`
	Caption string `json:"caption,omitempty"`
}

func (SendAudio) Method() string { return "sendAudio" }

// SendDocument отправляет произвольный файл-документ.
type SendDocument struct {
	chatTarget
	Document string `json:"document"`
	Caption  string `json:"caption,omitempty"`
}

func (SendDocument) Method() string { return "sendDocument" }

// SendVideo отправляет видеофайл.
type SendVideo struct {
	chatTarget
	Video   string `json:"video"`
	Caption string `json:"caption,omitempty"`
}

func (SendVideo) Method() string { return "sendVideo" }

// SendAnimation отправляет GIF/MPEG4-анимацию без звука.
type SendAnimation struct {
	chatTarget
	Animation string `json:"animation"`
	Caption   string `json:"caption,omitempty"`
}

func (SendAnimation) Method() string { return "sendAnimation" }

// SendVoice отправляет голосовое сообщение (ogg/opus).
type SendVoice struct {
	chatTarget
	Voice   string `json:"voice"`
	Caption string `json:"caption,omitempty"`
}

func (SendVoice) Method() string { return "sendVoice" }

// SendVideoNote отправляет «кружок» — круглое видео без звука.
type SendVideoNote struct {
	chatTarget
	VideoNote string `json:"video_note"`
}

func (SendVideoNote) Method() string { return "sendVideoNote" }

// MediaGroupItem — один элемент альбома.
type MediaGroupItem struct {
	Type    string `json:"type"`
	Media   string `json:"media"`
	Caption string `json:"caption,omitempty"`
}

// SendMediaGroup отправляет альбом из нескольких медиафайлов одним запросом.
// Throttling применяется к альбому целиком, а не к отдельным его элементам —
// так же как к любому другому одиночному вызову Bot API.
type SendMediaGroup struct {
	chatTarget
	Media []MediaGroupItem `json:"media"`
}

func (SendMediaGroup) Method() string { return "sendMediaGroup" }

// SendLocation отправляет географическую точку.
type SendLocation struct {
	chatTarget
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (SendLocation) Method() string { return "sendLocation" }

// SendVenue отправляет информацию о месте (точка + название + адрес).
type SendVenue struct {
	chatTarget
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Title     string  `json:"title"`
	Address   string  `json:"address"`
}

func (SendVenue) Method() string { return "sendVenue" }

// SendContact отправляет визитку (номер телефона + имя).
type SendContact struct {
	chatTarget
	PhoneNumber string `json:"phone_number"`
	FirstName   string `json:"first_name"`
}

func (SendContact) Method() string { return "sendContact" }

// SendPoll отправляет опрос.
type SendPoll struct {
	chatTarget
	Question  string   `json:"question"`
	Options   []string `json:"options"`
	Anonymous bool     `json:"is_anonymous,omitempty"`
}

func (SendPoll) Method() string { return "sendPoll" }

// SendDice отправляет анимированный рандомизатор (кубик, дартс и т.д.).
type SendDice struct {
	chatTarget
	Emoji string `json:"emoji,omitempty"`
}

func (SendDice) Method() string { return "sendDice" }

// SendSticker отправляет стикер по file_id.
type SendSticker struct {
	chatTarget
	Sticker string `json:"sticker"`
}

func (SendSticker) Method() string { return "sendSticker" }

// SendInvoice отправляет счёт на оплату (Telegram Payments).
type SendInvoice struct {
	chatTarget
	Title         string `json:"title"`
	Description   string `json:"description"`
	Payload       string `json:"payload"`
	ProviderToken string `json:"provider_token"`
	Currency      string `json:"currency"`
}

func (SendInvoice) Method() string { return "sendInvoice" }
