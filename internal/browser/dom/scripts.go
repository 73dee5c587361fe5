// browser/dom/scripts.go
package dom

// Page scripts are zero-argument function sources. Arguments are spliced in as JSON
// literals with fmt verbs, so the bodies must not contain a bare percent sign.

// resolveJS is the shared XPath lookup prelude.
const resolveJS = `
  const $x = (p) => {
    try {
      return document.evaluate(p, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
    } catch (e) {
      return null;
    }
  };
  const fire = (el, type) => el.dispatchEvent(new Event(type, { bubbles: true }));
`

const snapshotJS = `() => {
  const live = document.querySelectorAll('input, select, textarea');
  const clone = document.documentElement.cloneNode(true);
  const copies = clone.querySelectorAll('input, select, textarea');
  if (live.length === copies.length) {
    live.forEach((el, i) => {
      const c = copies[i];
      const tag = el.tagName.toLowerCase();
      if (tag === 'select') {
        Array.from(el.options).forEach((o, j) => {
          if (c.options[j]) {
            if (o.selected) c.options[j].setAttribute('selected', '');
            else c.options[j].removeAttribute('selected');
          }
        });
      } else if (tag === 'textarea') {
        c.textContent = el.value;
      } else if (el.type === 'checkbox' || el.type === 'radio') {
        if (el.checked) c.setAttribute('checked', '');
        else c.removeAttribute('checked');
      } else if (el.value !== undefined) {
        c.setAttribute('value', el.value);
      }
    });
  }
  return clone.outerHTML;
}`

const urlJS = `() => String(window.location.href)`

const measureJS = `() => {` + resolveJS + `
  const paths = %s;
  const inputSelector = 'input:not([type="hidden"]), select, textarea, button[type="submit"]';
  return paths.map((p) => {
    const el = $x(p);
    if (!el || !el.getBoundingClientRect) return { found: false };
    const r = el.getBoundingClientRect();
    const cs = window.getComputedStyle(el);
    const visibleInputs = Array.from(el.querySelectorAll(inputSelector)).filter((i) => {
      const s = window.getComputedStyle(i);
      return s.display !== 'none' && s.visibility !== 'hidden';
    }).length;
    return {
      found: true,
      x: r.left + window.scrollX,
      y: r.top + window.scrollY,
      width: r.width,
      height: r.height,
      display: cs.display,
      visibility: cs.visibility,
      opacity: parseFloat(cs.opacity),
      visibleInputs: visibleInputs,
    };
  });
}`

// UniquePathJS declares uniquePath(el), which builds the same path as
// GenerateUniqueXPath for a live element.
const UniquePathJS = `
  const uniquePath = (target) => {
    const idCount = (id) => document.querySelectorAll('[id="' + CSS.escape(id) + '"]').length;
    const quote = (s) => s.indexOf("'") === -1 ? "'" + s + "'" : '"' + s + '"';
    const parts = [];
    for (let n = target; n && n.nodeType === 1; n = n.parentElement) {
      const tag = n.tagName.toLowerCase();
      if (n.id && idCount(n.id) === 1) {
        parts.push('//*[@id=' + quote(n.id) + ']');
        break;
      }
      let index = 1;
      for (let s = n.previousElementSibling; s; s = s.previousElementSibling) {
        if (s.tagName.toLowerCase() === tag) index++;
      }
      parts.push(tag + '[' + index + ']');
    }
    const path = parts.reverse().join('/');
    return path.startsWith('//*[@id=') ? path : '/' + path;
  };
`

// formAtPointJS hit-tests viewport coordinates and returns the unique path of the
// first form-like element.
const formAtPointJS = `() => {` + UniquePathJS + `
  const x = %v - window.scrollX;
  const y = %v - window.scrollY;
  const stack = document.elementsFromPoint(x, y);
  const target = stack.find((el) =>
    (el.tagName === 'FORM' || el.tagName === 'FIELDSET' ||
     el.classList.contains('rjsf') || el.classList.contains('form-group')) && !el.hidden);
  return target ? uniquePath(target) : '';
}`

const scrollToJS = `() => {
  window.scrollTo({ left: %v, top: %v, behavior: 'smooth' });
  return true;
}`

const selectJS = `() => {` + resolveJS + `
  const el = $x(%s);
  if (!el) return false;
  el.value = %s;
  fire(el, 'change');
  fire(el, 'input');
  return true;
}`

const checkJS = `() => {` + resolveJS + `
  const el = $x(%s);
  if (!el) return false;
  el.checked = %t;
  fire(el, 'change');
  return true;
}`

const radioJS = `() => {` + resolveJS + `
  const el = $x(%s);
  if (!el) return false;
  if (el.value !== %s) return false;
  el.checked = true;
  fire(el, 'change');
  return true;
}`

const fillJS = `() => {` + resolveJS + `
  const el = $x(%s);
  if (!el) return false;
  el.focus();
  el.value = '';
  el.value = %s;
  fire(el, 'input');
  fire(el, 'change');
  el.blur();
  return true;
}`

const clickNextJS = `() => {` + resolveJS + `
  const scopePath = %s;
  const scope = (scopePath && $x(scopePath)) || document;
  const selectors = ['button[type="submit"]', 'input[type="submit"]'];
  const labelled = [['button', 'next'], ['button', 'continue'], ['button', 'submit'],
                    ['a', 'next'], ['a', 'continue'], ['a', 'submit']];
  const classes = ['.next-button', '.submit-button', '.continue-button'];
  const roots = scope === document ? [document] : [scope, document];
  for (const root of roots) {
    for (const sel of selectors) {
      const el = root.querySelector(sel);
      if (el) { el.click(); return true; }
    }
    for (const [tag, text] of labelled) {
      const el = Array.from(root.querySelectorAll(tag))
        .find((c) => (c.textContent || '').toLowerCase().includes(text));
      if (el) { el.click(); return true; }
    }
    for (const sel of classes) {
      const el = root.querySelector(sel);
      if (el) { el.click(); return true; }
    }
  }
  return false;
}`
