package imagegen

import (
	"fmt"
	"strings"
)

// Level is how far a branch output moves from the human toward the dog.
type Level float64

const (
	LevelSubtle      Level = 0.3
	LevelSignificant Level = 0.7
	LevelComplete    Level = 1.0
)

func (l Level) percent() int {
	return int(float64(l)*100 + 0.5)
}

const (
	DefaultBreed       = "Golden Retriever"
	defaultHeadContext = "professional portrait, front-facing, neutral expression"

	classifySystem = "You are a helpful assistant that matches people to dog breeds in a fun, creative way. This is for a lighthearted app that creates fun transformations."
	classifyPrompt = "Look at this portrait photo. If you had to match this person to a dog breed based on their general appearance, expression, and vibe, which single dog breed would you choose? This is for a fun creative app. Just return the breed name only, like 'Golden Retriever' or 'German Shepherd'. No explanation needed."

	headContextSystem = "You are a helpful assistant that describes portrait photos for creative image generation."
	headContextPrompt = "Describe this portrait in 2-3 short phrases focusing on: lighting (bright, soft, dramatic), angle (front-facing, side, etc.), expression (serious, smiling, neutral), and overall mood. Keep it brief."

	compositeSystem = "You are a helpful assistant that analyzes images and creates detailed prompts for image generation. You will see two images: a human portrait and a dog head. Your task is to create a detailed prompt that tells an image generator how to place the dog head on the human body while keeping everything else exactly the same."

	describeSystem = "You are a helpful assistant that analyzes portrait photos to extract visual characteristics for photorealistic image generation. Provide structured, specific details."
	describePrompt = `Analyze this portrait photo and provide a structured description. Format your response with these sections:

Subject:
- Gender and approximate age (e.g., "male, early-to-mid 30s" or "female, mid-20s")
- Face shape (e.g., "oval", "round", "angular", "narrow")
- Hair description (e.g., "short dark brown hair", "long blonde hair", "bald")
- Facial expression (e.g., "friendly, confident smile", "serious professional", "calm and neutral")
- Eye characteristics (e.g., "bright eyes", "warm expression", "alert gaze", "kind eyes")
- Facial features (e.g., "strong jawline", "soft features", "prominent cheekbones", "gentle expression")

Body:
- Clothing description with colors and details (e.g., "wearing a navy blue business suit, white shirt and patterned tie" or "casual t-shirt and jeans")
- Pose and posture (e.g., "arms crossed", "standing straight", "leaning slightly", "hands in pockets")

Lighting:
- Lighting style (e.g., "soft studio lighting", "bright natural light", "dramatic shadows", "even studio illumination")
- Light direction if visible

Background:
- Background description (e.g., "clean white background", "blurred office setting", "outdoor scene", "neutral gray background")

Camera:
- Camera angle (e.g., "front-facing", "slight side angle", "head-on portrait")

Be specific about colors, textures, and details. Do not identify the person, only describe visual characteristics. Pay special attention to facial expression and eye characteristics as these will be important for matching.`

	// DefaultDescription stands in when the vision model declines to describe
	// the photo.
	DefaultDescription = `Subject:
- Person, front-facing portrait
- Neutral expression

Body:
- Professional clothing
- Standing straight

Lighting:
- Soft studio lighting

Background:
- Clean background

Camera:
- Front-facing`

	compositePrefix = "Photorealistic studio portrait."
)

func headPrompt(breed, context string) string {
	return fmt.Sprintf("A photorealistic close-up portrait of a %s dog's head and upper neck, looking directly at the camera. The dog should have an expressive, intelligent look. Match the style: %s. Professional pet photography, studio lighting, high quality, detailed fur texture, clear background, headshot composition.", breed, context)
}

func editPrompt(breed string, level Level) string {
	switch level {
	case LevelSubtle:
		return fmt.Sprintf("Take the dog head from the second image and use it to replace the human head in the first image, showing subtle transformation (about 30%%). The face structure remains mostly human but starting to show canine characteristics from the dog head - slight furry texture appearing on skin around face, ears just beginning to shift toward %s dog ears, eyes showing hints of canine characteristics while remaining mostly human-shaped. Keep everything else from the first image exactly the same (body, clothing, pose, background, lighting). Match the dog's expression from the second image to the human's original expression from the first image.", breed)
	case LevelSignificant:
		return fmt.Sprintf("Take the dog head from the second image and use it to replace the human head in the first image, showing significant transformation (about 70%%). The dog head from the second image should be prominently featured with fully formed %s ears, significant fur coverage, developing snout, and canine eye structure. The dog's expression from the second image should match the human's original expression from the first image. Keep everything else from the first image exactly the same (body, clothing, pose, background, lighting). Make the transition from dog head to human neck look natural and anatomically correct.", breed)
	default:
		return fmt.Sprintf("Take the %s dog head from the second image and use it to completely replace the human head in the first image. The dog head should be fully formed, expressive, and intelligent-looking with detailed %s characteristics as shown in the second image. The dog's expression from the second image should match the human's original expression from the first image. Keep everything else from the first image exactly the same (body, clothing, pose, background, lighting). Make the transition from dog head to human neck look completely natural and anatomically correct. Match the lighting on the dog head to the lighting in the first image.", breed, breed)
	}
}

func transformationDescription(level Level) string {
	switch level {
	case LevelSubtle:
		return "Beginning to show subtle dog features (about 30% transformation). Face structure remains mostly human but starting to show canine characteristics. Slight furry texture appearing on skin around face. Ears just beginning to shift toward dog ears. Eyes showing hints of canine characteristics while remaining mostly human-shaped."
	case LevelSignificant:
		return "Significant transformation (about 70%). Dog head prominently featured with fully formed dog ears. Significant fur coverage, developing snout. Canine eye structure and expression."
	default:
		return "Complete transformation (100%). Fully formed dog head replacing the human head."
	}
}

func compositeRequestPrompt(breed string, level Level) string {
	return fmt.Sprintf(`I have two images:
- Image 1: A human portrait photo
- Image 2: A %[1]s dog head portrait

I want to create a new image where the dog head from Image 2 replaces the human head in Image 1, but everything else (body, clothing, pose, background, lighting) stays exactly the same from Image 1.

Transformation level: %[2]s

Please create a detailed, specific prompt for an image generator (DALL-E 3) that will:
1. Take the dog head characteristics from Image 2 (the %[1]s dog head)
2. Place it on the human body from Image 1
3. Keep the human's body, clothing, pose, background, and lighting exactly as they appear in Image 1
4. Make the transition from dog head to human neck look natural and anatomically correct
5. Match the lighting on the dog head to the lighting in the human image
6. Ensure the dog's expression matches the human's original expression

Format your response as a clear, detailed prompt that can be used directly with DALL-E 3. Be very specific about:
- The dog head characteristics (from Image 2)
- The human body, clothing, pose details (from Image 1)
- The background and lighting (from Image 1)
- How the dog head should be positioned and integrated
- The natural transition at the neck

Start your response with "Photorealistic studio portrait." and structure it clearly.`, breed, transformationDescription(level))
}

func describedPrompt(breed string, level Level, description string) string {
	var head string
	switch level {
	case LevelSubtle:
		head = fmt.Sprintf(`- %[1]s dog head somewhat integrated (about 30%% transformation)
- Face structure remains mostly human but starting to show canine characteristics
- Slight furry texture appearing on skin around face
- Ears just beginning to shift toward %[1]s dog ears
- Eyes showing hints of canine characteristics while remaining mostly human-shaped
- Dog head is beginning to replace the human head but not fully integrated yet
- Natural transition beginning from dog head to human neck`, breed)
	case LevelSignificant:
		head = fmt.Sprintf(`- %[1]s dog head prominently featured (about 70%% transformation)
- Fully formed %[1]s ears and significant fur coverage
- Developing snout and canine eye structure
- Natural transition from dog head to human neck`, breed)
	default:
		head = fmt.Sprintf(`- Realistic %[1]s dog head
- Fully formed, expressive, and intelligent-looking
- Detailed %[1]s characteristics and natural fur texture
- Natural neck anatomy
- Fur lighting matched to studio light
- Transition from dog head to human neck looks completely natural and anatomically correct`, breed)
	}
	style := `- Ultra-realistic photography
- Shallow depth of field
- No illustration or cartoon
- High detail, seamless transformation`
	if level == LevelComplete {
		style = `- Ultra-realistic photography
- Shallow depth of field
- No illustration or cartoon
- High detail, seamless anatomical integration
- 85mm lens
- Realistic shadows`
	}
	return fmt.Sprintf(`Photorealistic studio portrait.

Subject:
%s

Body:
- Human body with visible human shoulders, neck, and clothing
- Posture and clothing remain completely human and unchanged

Head:
%s

Style:
%s`, strings.TrimSpace(description), head, style)
}

func templatePrompt(breed string, level Level) string {
	switch level {
	case LevelSubtle:
		return fmt.Sprintf("Photorealistic studio portrait of a %[1]s dog head somewhat integrated on a human body (about 30%% transformation). The dog head is beginning to replace the human head but not fully integrated yet - face structure remains mostly human but starting to show subtle canine characteristics, slight furry texture appearing on skin around face, ears just beginning to shift toward %[1]s dog ears, eyes showing hints of canine characteristics while remaining mostly human-shaped. The human body, clothing, pose, and background remain completely unchanged. Natural transition beginning from dog head to human neck. Ultra-realistic photography style, shallow depth of field, high detail, seamless transformation.", breed)
	case LevelSignificant:
		return fmt.Sprintf("Photorealistic studio portrait of a %[1]s dog head prominently integrated on a human body (about 70%% transformation). Fully formed %[1]s ears, significant fur coverage, developing snout, and canine eye structure. The human body, clothing, pose, and background remain completely unchanged. Natural transition from dog head to human neck. Ultra-realistic photography style, shallow depth of field, high detail, seamless transformation.", breed)
	default:
		return fmt.Sprintf("Photorealistic studio portrait of a %[1]s dog head on a human body. The %[1]s dog head is fully formed, expressive, and intelligent-looking with detailed %[1]s characteristics and natural fur texture. The human body, clothing, pose, and background remain completely unchanged. Natural neck anatomy with seamless transition from dog head to human neck. Fur lighting matched to studio lighting. Ultra-realistic photography style, shallow depth of field, high detail, seamless anatomical integration.", breed)
	}
}

func fullDogDescribedPrompt(breed string, headDescribed bool) string {
	head := fmt.Sprintf(" The dog's head should be a %s dog head", breed)
	if headDescribed {
		head = fmt.Sprintf(" The dog's head should match the %s dog head characteristics from the generated dog head image", breed)
	}
	return fmt.Sprintf(`Photorealistic studio portrait of a complete %[1]s dog with full body visible (all four legs, torso, tail, complete dog anatomy - NO human body visible).

Dog:
- Complete %[1]s dog body with all four legs clearly visible
- Full dog torso, chest, and body (no human body parts)
- Dog head positioned in the same location and angle as the human head was in the original image
- %[2]s
- Dog's body positioned naturally - if the human was standing, the dog is standing on all four legs; if human was sitting, the dog is sitting naturally
- Natural, realistic %[1]s dog anatomy and proportions throughout the entire body
- Dog's expression and gaze direction match the human's original expression from the original image
- The human has completely disappeared - only the dog remains

Background and Lighting:
- Professional studio portrait background (can be different from original, but should be appropriate for a dog portrait)
- Studio lighting appropriate for a dog portrait
- Same camera angle and framing as the original image (portrait orientation)
- The background can be different from the original image

Style:
- Ultra-realistic photography
- Shallow depth of field
- No illustration or cartoon
- High detail, natural dog pose
- Same camera angle and framing as original
- 85mm lens
- Realistic shadows
- Professional studio portrait quality
- The dog should look natural and complete, as if it was always a dog in this portrait`, breed, head)
}

func fullDogTemplatePrompt(breed string) string {
	return fmt.Sprintf("Photorealistic studio portrait of a complete %[1]s dog with full body visible (all four legs, torso, tail - NO human body visible). The dog's head is positioned in the same location where a human head would be in a portrait photo. The dog has a complete, natural %[1]s dog body - no human body parts. The human has completely disappeared. Professional studio portrait background (can be different from original). Natural, realistic %[1]s dog anatomy throughout. Ultra-realistic photography style, shallow depth of field, high detail, professional studio portrait quality.", breed)
}
