package llm

const defaultNotesTemplate = `Take notes on the following scientific paper.
This is a technical paper outlining a computer algorithm.
The goal is to be able to create a complete understanding of the paper after reading all notes.

Rules:
- Include specific quotes and details inside your notes.
- Respond with as many notes as it might take to cover the entire paper.
- Go into as much detail as you can, while keeping each note on a very specific part of the paper.
- Include notes about the results of any experiments the paper describes.
- Include notes about any steps to reproduce the results of the experiments.
- DO NOT respond with notes like: "The author discusses how well XYZ works.", instead explain what XYZ is and how it works.

Each page of the paper starts with a "[page N]" marker. Record the pages each note comes from.
Respond only with a JSON object of the form:
{"notes": [{"note": "<note text>", "pageNumbers": [<page>, ...]}]}`

const defaultQATemplate = `You are a tenured professor of computer science helping a student with their research.
The student has a question regarding a paper they are reading.
Here are their notes on the paper:
%s

And here are some relevant parts of the paper relating to their question:
%s

Answer the student's question in the context of the paper. You should also suggest follow up questions to help the student understand the paper.
Respond only with a JSON object of the form:
{"answer": "<answer>", "followupQuestions": ["<question>", ...]}`
