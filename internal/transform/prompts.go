package transform

import "fmt"

const visionSystemPrompt = `You are an assistant that clearly describes children's drawings with the right level of detail.
Provide a balanced description that includes:
- The main elements, characters, or objects in the drawing
- The basic shapes, proportions, and their positions
- Key colors used and notable visual features
- Any distinctive or unusual elements that make this drawing unique
- Basic expressions or postures if characters are present

Focus ONLY on what is depicted in the drawing itself.
Do NOT include phrases like 'drawn on paper' or any references to the medium.
Be clear and thorough without being excessively verbose.`

const visionUserPrompt = `Describe this child's drawing with enough detail to capture its essence.
Include the main elements, their colors, arrangement, and any unique or distinctive features.
Be informative but concise.`

// artworkPrompt wraps a drawing description into the image generation prompt.
func artworkPrompt(description string) string {
	return fmt.Sprintf(`Transform this child's drawing into a magical, imaginative digital artwork: %s

Create a fantastical, dreamlike interpretation that honors the child's imagination while adding professional artistic flair.
Maintain the original's essence, character proportions, and unique elements exactly as described.
Use vibrant, enchanting colors and stylized textures that feel like stepping into a child's imagination come to life.
Add magical effects, glowing elements, or fantastical environments that complement the drawing's spirit.
The result should not be photorealistic or strictly CGI, but rather a professional digital artwork that celebrates
the wonder and creativity of childhood imagination - like it could be from a high-quality animated film or storybook.
Make the impossible possible in this magical world where a child's drawings become reality.`, description)
}
