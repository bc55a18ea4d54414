package notify

import (
	"fmt"
	"strings"

	"github.com/craftsleuth/sleuth/internal/storage"
)

const (
	SubjectPostRemoved    = "A post has been deleted"
	SubjectAccountDeleted = "User's account has been deleted"

	// MethodAccountDeleted is the method reported when the author is gone.
	MethodAccountDeleted = "Account has been deleted"
)

// RemovalMessage renders the modmail body for a tracked post that went away.
func RemovalMessage(community string, sub storage.Submission, method string) string {
	var sb strings.Builder

	sb.WriteString("A post has been removed\n\n")
	fmt.Fprintf(&sb, "OP: `%s`\n\n", sub.Username)
	fmt.Fprintf(&sb, "Title: %s\n\n", sub.Title)
	fmt.Fprintf(&sb, "Post ID: https://old.reddit.com/comments/%s\n\n", sub.PostID)
	fmt.Fprintf(&sb, "Method: %s\n\n", method)
	fmt.Fprintf(&sb, "Date created: %s\n\n", storage.FormatTimestamp(sub.CreatedAt))
	fmt.Fprintf(&sb, "Date found: %s\n\n", storage.FormatTimestamp(sub.EditedAt))

	sb.WriteString("Ban Template;\n\n")
	fmt.Fprintf(&sb, "    [Deleted post](https://reddit.com/comments/%s).\n\n", sub.PostID)
	sb.WriteString("    Deleting an answered post, without marking it solved, is against our rules.\n\n")
	fmt.Fprintf(&sb, "    You can read [our rules](https://reddit.com/r/%s/wiki/rules) to see if you're eligible to appeal this ban.\n", community)

	return sb.String()
}

// ErrorReport renders the subject and body sent when the bot stops on an
// unexpected error.
func ErrorReport(bot, contact string, err error, trace string) (subject, body string) {
	subject = fmt.Sprintf("An error has occured with %s msg", bot)
	detail := err.Error()
	if trace != "" {
		detail += "\n\n" + trace
	}
	body = fmt.Sprintf("Error with '%s':\n\n%s\n\nPlease report to author (%s)", bot, detail, contact)
	return subject, body
}
