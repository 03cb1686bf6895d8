// Package notify delivers a due prayer to the outside world.
//
// A Sink never returns an error value on its own; it reports delivery through
// an explicit Result so the caller decides what a failure means. Sinks:
//   - LogSink writes a line through logx
//   - CommandSink runs an audio player with the athan file for the prayer
//   - TelegramSink sends a message to a chat via telebot
//   - Multi fans one notification out to several sinks
package notify
