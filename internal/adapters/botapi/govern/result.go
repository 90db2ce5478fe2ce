package govern

// Message — минимальная проекция объекта Message из Bot API, достаточная
// для того, что делает с результатом вызывающий код этого клиента (получить
// message_id для последующего forwardMessage/ответа). Полная схема Bot API
// Message — это десятки необязательных полей; добавлять их впрок незачем,
// пока нет метода, которому они нужны.
type Message struct {
	MessageID int   `json:"message_id"`
	Date      int64 `json:"date"`
}
