package annotate

// Prompt instructs the model to turn an analysis into inline annotations
const Prompt = `You are given the result of a BS analysis of a web page. Produce inline annotations for the claims it covers.

Each annotation has:
- "find": a SHORT snippet copied EXACTLY from the page, so it can be matched literally
- "annotation": a short, punchy counter-fact. Never write "unverifiable claim"; state the actual counter-evidence
- "type": one of "false", "suspicious", "verified", "fluff"
- "details": optional list of concrete evidence items (tools, facts, links)

Be specific. If nothing was found, say what was looked for and not found.

Examples:
- "completely undetectable" -> annotation: "Detectable by multiple tools", details: ["Zoom AI Companion flags it", "IT admins can see the process"]
- "$100M ARR" -> annotation: "Only 47 employees on LinkedIn", details: ["Crunchbase shows $45M raised"]
- "world-class AI platform" -> annotation: "Standard SaaS dashboard with an API wrapper", details: []
- "99.9% accuracy" -> annotation: "No published benchmarks", details: ["No third-party evaluation found", "No methodology disclosed"]

Reply with a JSON object of the form {"replacements": [{"find": "...", "annotation": "...", "type": "...", "details": ["..."]}]}.`
