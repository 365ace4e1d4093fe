package retrieval

import "strings"

const defaultChunkSize = 1200

// SplitText breaks a document into chunks of at most maxLen bytes, cutting
// on paragraph boundaries where possible. A maxLen of zero or less uses the
// default chunk size.
func SplitText(text string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = defaultChunkSize
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		// Oversized paragraph: hard-wrap it on its own.
		if len(para) > maxLen {
			flush()
			for len(para) > maxLen {
				cut := strings.LastIndexByte(para[:maxLen], ' ')
				if cut <= 0 {
					cut = maxLen
				}
				chunks = append(chunks, strings.TrimSpace(para[:cut]))
				para = strings.TrimSpace(para[cut:])
			}
			if para != "" {
				current.WriteString(para)
			}
			continue
		}

		if current.Len() > 0 && current.Len()+len(para)+2 > maxLen {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()

	return chunks
}
