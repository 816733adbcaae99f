package generate

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/appbuilder/internal/attach"
)

const systemPrompt = "You are an expert web developer. Create clean, modern, and functional web applications. Always return complete, working code."

// previewLimit bounds how much of an attachment's source reference is
// embedded in the prompt; full payloads would blow the token budget.
const previewLimit = 100

func buildPrompt(brief string, attachments []attach.Attachment, round int) string {
	if round >= 2 {
		return revisionPrompt(brief, attachments)
	}
	return initialPrompt(brief, attachments)
}

func initialPrompt(brief string, attachments []attach.Attachment) string {
	var b strings.Builder
	fmt.Fprintf(&b, `Create a complete, modern web application based on this brief: %s

Requirements:
1. Create a single HTML file (index.html) with embedded CSS and JavaScript
2. Use Bootstrap 5 from CDN for responsive design and modern styling
3. Make it fully functional and ready to deploy
4. Include proper error handling and user feedback
5. Write clean, well-commented code
6. Ensure the app is accessible and user-friendly
7. Handle any data processing or API calls mentioned in the brief
8. Make the interface intuitive and professional
`, brief)

	writeAttachmentList(&b, attachments, "Attachments available:", "Use these attachments in your application as needed.")

	b.WriteString("\nReturn ONLY the complete HTML code. Do not include any explanations, markdown formatting, or code blocks. Just the raw HTML that can be saved as index.html and run immediately.\n")
	return b.String()
}

func revisionPrompt(brief string, attachments []attach.Attachment) string {
	var b strings.Builder
	fmt.Fprintf(&b, `Modify the existing web application based on this revision brief: %s

This is a revision request. Update the existing code to:
1. Implement the new requirements from the brief
2. Maintain all existing functionality
3. Keep the same overall structure but enhance it
4. Ensure all previous features still work
5. Add any new features requested
6. Improve the user experience where possible
7. Maintain the same styling approach (Bootstrap 5)
`, brief)

	writeAttachmentList(&b, attachments, "New attachments available:", "Use these new attachments in your updated application.")

	b.WriteString("\nReturn ONLY the complete updated HTML code. Do not include any explanations, markdown formatting, or code blocks. Just the raw HTML that can be saved as index.html and run immediately.\n")
	return b.String()
}

func writeAttachmentList(b *strings.Builder, attachments []attach.Attachment, header, footer string) {
	if len(attachments) == 0 {
		return
	}
	b.WriteString("\n" + header + "\n")
	for _, a := range attachments {
		preview := a.URL
		if len(preview) > previewLimit {
			preview = preview[:previewLimit] + "..."
		}
		fmt.Fprintf(b, "- %s: %s\n", a.Name, preview)
	}
	b.WriteString(footer + "\n")
}
