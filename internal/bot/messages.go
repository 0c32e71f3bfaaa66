package bot

import "fmt"

func startText(chatID int64) string {
	return "🚦 *Traffic Watcher Bot*\n\n" +
		fmt.Sprintf("Your Chat ID: `%d`\n\n", chatID) +
		"Commands:\n" +
		"/status - Current traffic summary\n" +
		"/today - Today's traffic\n" +
		"/week - This week's traffic\n" +
		"/month - This month's traffic\n" +
		"/live - Live bandwidth\n" +
		"/help - Show this help"
}

const helpText = "📊 *Traffic Watcher Commands*\n\n" +
	"/status - Overall traffic summary\n" +
	"/today - Today's traffic stats\n" +
	"/week - This week's traffic stats\n" +
	"/month - This month's traffic stats\n" +
	"/live - Current bandwidth usage\n" +
	"/thresholds - View alert thresholds"
