package builder

import (
	"fmt"
	"time"
)

// fallbackPage is published when content generation fails: the
// deliverable stays a coherent, honestly-labeled page rather than a
// broken build.
const fallbackPage = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>App Generation Error</title>
    <link href="https://cdn.jsdelivr.net/npm/bootstrap@5.3.0/dist/css/bootstrap.min.css" rel="stylesheet">
</head>
<body>
    <div class="container mt-5">
        <div class="row justify-content-center">
            <div class="col-md-6">
                <div class="alert alert-danger text-center">
                    <h4>App Generation Failed</h4>
                    <p>Sorry, we couldn't generate your app at this time. Please try again later.</p>
                    <p class="mb-0">Error: AI code generation service is currently unavailable.</p>
                </div>
            </div>
        </div>
    </div>
</body>
</html>`

func mitLicense(owner string) string {
	return fmt.Sprintf(`MIT License

Copyright (c) %d %s

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
`, time.Now().Year(), owner)
}

func readme(task, brief string, round int, repoURL, pagesURL string) string {
	return fmt.Sprintf(`# App Builder - Task %s

## Overview
This application was automatically generated for task %s, round %d.

**Brief:** %s

## Live Demo
🌐 [View Live Application](%s)

## Repository
📁 [GitHub Repository](%s)

## Features
- Responsive design with Bootstrap 5
- Modern web technologies
- Clean and maintainable code
- Ready for production deployment

## Setup
1. Clone the repository
2. Open `+"`index.html`"+` in a web browser
3. Or visit the GitHub Pages URL above

## Code Structure
- `+"`index.html`"+` - Main application file with embedded CSS and JavaScript
- `+"`LICENSE`"+` - MIT License
- `+"`README.md`"+` - This file

## Technical Details
- **Framework:** Vanilla HTML/CSS/JavaScript
- **Styling:** Bootstrap 5 (CDN)
- **Deployment:** GitHub Pages
- **Generated:** %s

## License
This project is licensed under the MIT License - see the [LICENSE](LICENSE) file for details.

---
*This application was automatically generated by the App Builder System.*
`, task, task, round, brief, pagesURL, repoURL, time.Now().UTC().Format("2006-01-02 15:04:05 UTC"))
}
