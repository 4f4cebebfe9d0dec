package chain

import (
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/postwise/internal/content"
)

const systemPrompt = `You are a content strategist for an organization. ` +
	`Respond with JSON only, no prose and no markdown fences.`

func buildIdeasPrompt(org content.Organization, reqs []PlatformRequest, customPrompt string, recentTitles []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Propose social media and blog content ideas for %q", org.Name)
	if org.Industry != "" {
		fmt.Fprintf(&b, ", a %s organization", org.Industry)
	}
	b.WriteString(".\n")
	if org.Description != "" {
		fmt.Fprintf(&b, "About: %s\n", org.Description)
	}
	if org.Tone != "" {
		fmt.Fprintf(&b, "Tone of voice: %s\n", org.Tone)
	}
	if org.Audience != "" {
		fmt.Fprintf(&b, "Target audience: %s\n", org.Audience)
	}
	b.WriteString("Produce exactly:\n")
	for _, r := range reqs {
		fmt.Fprintf(&b, "- %d ideas for %s\n", r.Count, r.Platform)
	}
	if customPrompt != "" {
		fmt.Fprintf(&b, "Additional direction from the user: %s\n", customPrompt)
	}
	if len(recentTitles) > 0 {
		b.WriteString("Do not repeat these recently published topics:\n")
		for _, t := range recentTitles {
			fmt.Fprintf(&b, "- %s\n", t)
		}
	}
	b.WriteString(`Reply with a JSON array of objects: {"platform": string, "title": string, "concept": string}.`)
	return b.String()
}

func buildElaborationPrompt(org content.Organization, idea content.Idea) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write the full post for this %s content idea on behalf of %q.\n", idea.Platform, org.Name)
	fmt.Fprintf(&b, "Title: %s\nConcept: %s\n", idea.Title, idea.Concept)
	if org.Tone != "" {
		fmt.Fprintf(&b, "Tone of voice: %s\n", org.Tone)
	}
	b.WriteString(`Reply with a JSON object: {"body": string, "hashtags": [string]}.`)
	return b.String()
}

func buildSEOPrompt(items []content.Elaborated) string {
	var b strings.Builder
	b.WriteString("Analyze the SEO potential of each post below.\n")
	for _, it := range items {
		fmt.Fprintf(&b, "--- id: %s\nplatform: %s\ntitle: %s\nbody: %s\n", it.ID, it.Platform, it.Title, it.Body)
	}
	b.WriteString(`Reply with a JSON array of objects: {"id": string, "keywords": [string], "score": number between 0 and 100, "confidence": number between 0 and 1}.`)
	return b.String()
}
