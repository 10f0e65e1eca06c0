// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package protocol

// =============================================================================
// PROVIDER / MODEL / AGENT CATALOGS
// =============================================================================

// Model is one model offered by a provider.
type Model struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Provider groups the models served under one upstream account.
type Provider struct {
	ID     string           `json:"id"`
	Name   string           `json:"name"`
	Models map[string]Model `json:"models"`
}

// ProviderList is the full provider catalog plus the server's default
// model per provider.
type ProviderList struct {
	Providers []Provider        `json:"providers"`
	Default   map[string]string `json:"default"`
}

// FindModel looks up a model by provider and model id.
func (p *ProviderList) FindModel(providerID, modelID string) (Provider, Model, bool) {
	for _, prov := range p.Providers {
		if prov.ID != providerID {
			continue
		}
		if m, ok := prov.Models[modelID]; ok {
			return prov, m, true
		}
		return Provider{}, Model{}, false
	}
	return Provider{}, Model{}, false
}

// Agent is one agent profile the server can run a turn with.
type Agent struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Mode        string `json:"mode,omitempty"`
}

// AppInfo is the server's identity blob, used as a liveness probe.
type AppInfo struct {
	Hostname string `json:"hostname"`
	Version  string `json:"version,omitempty"`
	Path     struct {
		Root string `json:"root,omitempty"`
		Cwd  string `json:"cwd,omitempty"`
	} `json:"path"`
}

// =============================================================================
// CHAT INPUT
// =============================================================================

// ChatInput is the request body for submitting one user turn. The
// assistant's response never comes back on this call; it arrives over the
// event stream.
type ChatInput struct {
	ModelID    string          `json:"modelID"`
	ProviderID string          `json:"providerID"`
	Agent      string          `json:"agent,omitempty"`
	Parts      []ChatInputPart `json:"parts"`
}

// ChatInputPart is one fragment of the outgoing turn.
type ChatInputPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`

	// File attachments.
	MIME string `json:"mime,omitempty"`
	URL  string `json:"url,omitempty"`
}

// TextInput builds a single-text-part chat input.
func TextInput(providerID, modelID, agent, text string) ChatInput {
	return ChatInput{
		ModelID:    modelID,
		ProviderID: providerID,
		Agent:      agent,
		Parts: []ChatInputPart{
			{Type: PartTypeText, Text: text},
		},
	}
}
