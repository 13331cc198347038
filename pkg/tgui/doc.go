// Package tgui provides small Telegram UI helpers:
//   - Inline keyboard builders
//   - Callback data helpers ("route:action:args")
//   - HTML escaping for ParseMode="HTML"
package tgui
