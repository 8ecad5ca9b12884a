package consumer

import "fmt"

// AckPolicy решает, подтверждать ли сообщение, если письмо отправить не удалось
type AckPolicy string

const (
	// AckAlways сообщение подтверждается всегда; ошибка отправки только логируется и трассируется
	AckAlways AckPolicy = "always"
	// AckOnSuccess при ошибке отправки handler возвращает ошибку, и шина доставляет сообщение повторно
	AckOnSuccess AckPolicy = "on-success"
)

// ParseAckPolicy разбирает имя политики; пустая строка = AckAlways
func ParseAckPolicy(s string) (AckPolicy, error) {
	switch AckPolicy(s) {
	case "", AckAlways:
		return AckAlways, nil
	case AckOnSuccess:
		return AckOnSuccess, nil
	default:
		return "", fmt.Errorf("unknown ack policy %q", s)
	}
}

// ackOnFailure true, если сообщение подтверждается несмотря на ошибку отправки
func (p AckPolicy) ackOnFailure() bool {
	return p != AckOnSuccess
}
