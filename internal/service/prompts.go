package service

import "fmt"

// Prompt templates. Every generation in the engine goes through one of
// these; they enforce output schemas so the JSON extractor has something
// to work with even when the model adds prose.

const difficultyGuidance = `Difficulty "%s": easy questions test recall of stated facts, medium
questions require connecting ideas within the material, hard questions
require applying or contrasting concepts from the material.`

func mcqPrompt(context, difficulty string) string {
	return fmt.Sprintf(`You are generating one multiple-choice study question from course material.

%s

Rules:
- Ground the question ONLY in learnable content from the material below.
- Ignore administrative metadata: course codes, grading, schedules, instructor names.
- Provide exactly 4 options labeled A, B, C, D with unique texts.
- Exactly one option is correct. Never use "all of the above" or "none of the above".

Return ONLY a JSON object:
{"question": "...", "options": {"A": "...", "B": "...", "C": "...", "D": "..."}, "correct": "A"}

Material:
%s`, fmt.Sprintf(difficultyGuidance, difficulty), context)
}

func theoreticalPrompt(context, difficulty string) string {
	return fmt.Sprintf(`You are generating one short-answer study question from course material.

%s

Rules:
- Ground the question ONLY in learnable content from the material below.
- Ignore administrative metadata: course codes, grading, schedules, instructor names.
- The reference answer should be 2-4 sentences.

Return ONLY a JSON object:
{"question": "...", "correct_answer": "..."}

Material:
%s`, fmt.Sprintf(difficultyGuidance, difficulty), context)
}

func gradeAnswerPrompt(question, correctAnswer, userAnswer string) string {
	return fmt.Sprintf(`Grade a student's free-text answer against the reference answer.

Question: %s
Reference answer: %s
Student answer: %s

Classify the student answer:
- "correct": conveys the substance of the reference answer
- "incorrect": attempts the question but gets it wrong or incomplete
- "irrelevant": does not address the question at all

Return ONLY a JSON object:
{"classification": "correct|incorrect|irrelevant", "similarity_score": 0.0, "feedback": "one or two sentences for the student"}

similarity_score is a number in [0,1] reflecting how close the student
answer is to the reference answer.`, question, correctAnswer, userAnswer)
}

func topicPrompt(question string) string {
	return fmt.Sprintf(`Name the single topic this question tests, as a concise tag of at most
four words. Return ONLY the tag, no punctuation, no explanation.

Question: %s`, question)
}

func explanationPrompt(question, correctAnswer, context string) string {
	if context != "" {
		return fmt.Sprintf(`A student answered this question incorrectly. Explain why the correct
answer is right, grounded in the course material below. Keep it under
120 words.

Question: %s
Correct answer: %s

Material:
%s`, question, correctAnswer, context)
	}
	return fmt.Sprintf(`A student answered this question incorrectly. The course material for
this question is unavailable, so explain from general knowledge why the
correct answer is right, and start with "From general knowledge:". Keep
it under 120 words.

Question: %s
Correct answer: %s`, question, correctAnswer)
}

func topicSummaryPrompt(topic, context string) string {
	return fmt.Sprintf(`Write a detailed revision summary of the topic "%s" for a student who
answered questions on it incorrectly, grounded in the course material
below. Use short paragraphs. 150-250 words.

Material:
%s`, topic, context)
}

func learningInitialPrompt(topic, context string) string {
	return fmt.Sprintf(`You are a patient tutor starting a learning session on the topic
"%s". Using the course material below, write a clear explanation of the
topic (2-3 paragraphs), then ask the student exactly one question about
it. The question must be the final sentence and must end with a question
mark.

Material:
%s`, topic, context)
}

func learningCorrectAnswerPrompt(question, context string) string {
	return fmt.Sprintf(`Answer the question below in 1-3 sentences, grounded in the course
material when it is relevant. Return only the answer.

Question: %s

Material:
%s`, question, context)
}

func learningNextQuestionPrompt(topic, context, previousQuestion string) string {
	return fmt.Sprintf(`You are tutoring a student on the topic "%s". Ask exactly one new
question about the material below, different from the previous question.
Return only the question; it must end with a question mark.

Previous question: %s

Material:
%s`, topic, previousQuestion, context)
}

func storyPrompt(label, content string) string {
	return fmt.Sprintf(`Explain the following section of study material (%s) to a student in a
friendly, pedagogical way. Cover every concept it introduces, in order.
2-3 paragraphs, no headings.

%s`, label, content)
}
