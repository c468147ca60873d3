package parser

import (
	"encoding/xml"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/shshwtsuthar/echovault/internal/model"
)

// workspaceXML is a loose decode of the subset of IntelliJ's workspace.xml
// this parser cares about: <component name="..."> blocks holding <option
// name="role"/"content" value="..."/> pairs, the shape the original
// apps/core/src/extractors/jetbrains.rs recognizes by component marker.
type workspaceXML struct {
	Components []struct {
		Name    string `xml:"name,attr"`
		Entries []struct {
			Options []struct {
				Name  string `xml:"name,attr"`
				Value string `xml:"value,attr"`
			} `xml:"option"`
		} `xml:"list>entry,entry"`
	} `xml:"component"`
}

var jetbrainsMarkers = map[string]bool{
	"AiAssistantConversation": true,
	"ChatSessionStateTemp":    true,
	"AiAssistantHistory":      true,
}

type jetBrainsParser struct{}

func newJetBrainsParser() *jetBrainsParser { return &jetBrainsParser{} }

func (j *jetBrainsParser) SourceName() string { return "jetbrains" }

func (j *jetBrainsParser) CanParse(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".xml")
}

func (j *jetBrainsParser) Parse(fs afero.Fs, path string) (model.Conversation, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return model.Conversation{}, fmt.Errorf("read %s: %w", path, err)
	}
	var doc workspaceXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return model.Conversation{}, fmt.Errorf("parse %s: %w", path, err)
	}

	conv := model.Conversation{
		ID:     filepath.Base(filepath.Dir(filepath.Dir(path))),
		Source: "jetbrains",
		Title:  filepath.Base(filepath.Dir(filepath.Dir(path))),
	}

	for _, comp := range doc.Components {
		if !jetbrainsMarkers[comp.Name] {
			continue
		}
		for _, entry := range comp.Entries {
			var roleRaw, content string
			for _, opt := range entry.Options {
				switch opt.Name {
				case "role", "type":
					roleRaw = opt.Value
				case "content", "text":
					content = opt.Value
				}
			}
			if roleRaw == "" && content == "" {
				continue
			}
			role := model.NormalizeRole(roleRaw)
			if role == model.RoleInfo {
				content = model.AnnotateInfo(roleRaw, content)
			}
			conv.Messages = append(conv.Messages, model.Message{
				Role:    role,
				Content: content,
			})
		}
	}

	return conv, nil
}
