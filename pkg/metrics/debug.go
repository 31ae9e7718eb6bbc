// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"net/http"
	"sync"

	"github.com/goccy/go-json"
)

// DebugProvider exposes introspection data for the /debug/subscriptions endpoint.
// Implementations return a JSON-serializable value.
type DebugProvider interface {
	GetDebugInfo() any
}

var debugRegistry struct {
	providers map[string]DebugProvider
	mu        sync.RWMutex
}

// RegisterDebugProvider registers a provider under name, replacing any previous one.
func RegisterDebugProvider(name string, provider DebugProvider) {
	debugRegistry.mu.Lock()
	defer debugRegistry.mu.Unlock()

	if debugRegistry.providers == nil {
		debugRegistry.providers = make(map[string]DebugProvider)
	}

	debugRegistry.providers[name] = provider
}

// UnregisterDebugProvider removes a provider from the registry.
func UnregisterDebugProvider(name string) {
	debugRegistry.mu.Lock()
	defer debugRegistry.mu.Unlock()

	delete(debugRegistry.providers, name)
}

func handleDebug(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)

		return
	}

	debugRegistry.mu.RLock()

	response := make(map[string]any, len(debugRegistry.providers))
	for name, provider := range debugRegistry.providers {
		response[name] = provider
	}
	debugRegistry.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")

	if len(response) == 0 {
		_, _ = w.Write([]byte(`{"status":"no_providers_registered"}`))

		return
	}

	// providers are queried outside the registry lock
	for name, provider := range response {
		response[name] = provider.(DebugProvider).GetDebugInfo()
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(response); err != nil {
		http.Error(w, "Failed to encode debug info", http.StatusInternalServerError)
	}
}
