package services

import (
	"github.com/yungbote/dubpilot-backend/internal/types"
)

// StageState is the per-language status/progress a stage maps to.
type StageState struct {
	Status   types.TargetStatus
	Progress int
}

// stageProgressTable is the authoritative stage map. Order documents the
// intended pipeline sequence; lookup does not depend on it. tts_completed and
// segment_tts_completed report "completed" early because the remaining mux
// work never fails independently per language.
var stageProgressTable = map[string]StageState{
	"starting":              {Status: types.TargetStatusProcessing, Progress: 1},
	"asr_started":           {Status: types.TargetStatusProcessing, Progress: 10},
	"asr_completed":         {Status: types.TargetStatusProcessing, Progress: 20},
	"translation_started":   {Status: types.TargetStatusProcessing, Progress: 21},
	"translation_completed": {Status: types.TargetStatusProcessing, Progress: 35},
	"tts_started":           {Status: types.TargetStatusProcessing, Progress: 36},
	"tts_completed":         {Status: types.TargetStatusCompleted, Progress: 70},
	"segment_tts_completed": {Status: types.TargetStatusCompleted, Progress: 70},
	"mux_started":           {Status: types.TargetStatusProcessing, Progress: 71},
	"done":                  {Status: types.TargetStatusCompleted, Progress: 100},
	"failed":                {Status: types.TargetStatusFailed, Progress: 0},
}

// languageIndependentStages are processed even when no language code can be
// resolved from the callback.
var languageIndependentStages = map[string]bool{
	"downloaded":    true,
	"stt_completed": true,
}

// StageProgressFor maps a stage name to its target state. Unknown stages
// return ok=false and cause no target mutation.
func StageProgressFor(stage string) (StageState, bool) {
	state, ok := stageProgressTable[stage]
	return state, ok
}

func StageIsLanguageIndependent(stage string) bool {
	return languageIndependentStages[stage]
}
