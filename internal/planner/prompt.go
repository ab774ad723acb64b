package planner

// plannerSystem primes the model for decomposition replies.
const plannerSystem = `You are a writing project planner. You break writing goals into small ordered tasks and reply with JSON only.`

// decompositionPrompt is the prompt template for goal decomposition.
const decompositionPrompt = `Break this writing goal into subtasks. Each task should be completable in a single focused pass.

Goal:
%s

Return ONLY a JSON array of tasks with this exact structure (no other text):
[
  {
    "title": "Short task title",
    "description": "What this task produces and how",
    "type": "outline|draft|research|edit|publish",
    "priority": "low|medium|high",
    "dependencies": [0]
  }
]

Rules:
- dependencies lists the ARRAY INDICES of the tasks that must finish first
- Use an empty array [] when a task has no dependencies
- research tasks gather material, draft tasks produce prose, edit tasks revise earlier output
- Order the tasks so research comes before drafting and drafting before editing
- Three to seven tasks is usually right; do not pad the plan`
