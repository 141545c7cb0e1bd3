package models

import "golang.org/x/text/language"

var supportedLanguages = []language.Tag{
	language.SimplifiedChinese,
	language.English,
}

var languageMatcher = language.NewMatcher(supportedLanguages)

var localizedMessages = map[ErrorCode]map[language.Tag]string{
	CodeInvalidSegment: {
		language.SimplifiedChinese: "出发站或到达站不在该车次的运行区间内",
		language.English:           "Departure or arrival station is not on this train's route",
	},
	CodeInsufficientSeats: {
		language.SimplifiedChinese: "余票不足",
		language.English:           "Not enough seats are available for this segment",
	},
	CodeConflict: {
		language.SimplifiedChinese: "座位已被其他订单占用，请重试",
		language.English:           "The seat was just taken, please try again",
	},
	CodeQuotaExceeded: {
		language.SimplifiedChinese: "今日取消订单次数已达上限",
		language.English:           "You have reached today's cancellation limit",
	},
	CodeOrderNotFound: {
		language.SimplifiedChinese: "订单不存在",
		language.English:           "Order not found",
	},
	CodeInvalidStateTransition: {
		language.SimplifiedChinese: "当前订单状态不允许该操作",
		language.English:           "This operation is not allowed for the order's current status",
	},
	CodeOrderExpired: {
		language.SimplifiedChinese: "订单已超时，座位已释放",
		language.English:           "The payment window has expired and the seats were released",
	},
	CodeTrainNotFound: {
		language.SimplifiedChinese: "该日期没有此车次",
		language.English:           "This train does not run on the selected date",
	},
	CodeValidation: {
		language.SimplifiedChinese: "请求参数有误",
		language.English:           "The request is invalid",
	},
}

// MatchLanguage picks the best supported language for an Accept-Language header.
// Chinese is the fallback.
func MatchLanguage(acceptLanguage string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return language.SimplifiedChinese
	}
	_, index, _ := languageMatcher.Match(tags...)
	return supportedLanguages[index]
}

// LocalizedMessage returns the user-facing message for a code
func LocalizedMessage(code ErrorCode, tag language.Tag) string {
	messages, ok := localizedMessages[code]
	if !ok {
		return string(code)
	}
	if msg, ok := messages[tag]; ok {
		return msg
	}
	return messages[language.SimplifiedChinese]
}
